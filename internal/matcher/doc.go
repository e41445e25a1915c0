// Package matcher scores wanted-item requests against catalog entries.
//
// Titles are compared with a token-set similarity that tolerates subtitles
// and series suffixes on either side; authors are compared with a plain
// normalized indel similarity. Both scores live in [0, 1].
//
// A candidate is a certain match when both scores reach the threshold and a
// possible match when only the title does. An unknown author on either side
// scores 0, so an empty author can never produce a certain match.
package matcher
