package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/shelfreq/internal/models"
)

var _ list.Item = runItem{}

// runItem wraps [models.SyncRun] to implement [list.Item].
type runItem struct {
	run *models.SyncRun
}

func (i runItem) FilterValue() string { return string(i.run.Status) + " " + string(i.run.Trigger) }
func (i runItem) Title() string {
	return fmt.Sprintf("#%d %s • %s", i.run.Sequence, styles.forRun(string(i.run.Status)).Render(string(i.run.Status)), i.run.Trigger)
}
func (i runItem) Description() string {
	started := i.run.StartedAt.Local().Format("Jan 02 15:04:05")
	if i.run.Status == models.RunRunning {
		return fmt.Sprintf("%s • running", started)
	}
	desc := fmt.Sprintf("%s • %d checked • %d matched • %s",
		started, i.run.RequestsChecked, i.run.MatchesFound, i.run.Duration().Round(time.Millisecond))
	if i.run.Error != nil {
		desc = fmt.Sprintf("%s • %s", desc, *i.run.Error)
	}
	return desc
}
