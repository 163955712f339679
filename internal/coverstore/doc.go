// Package coverstore persists downloaded cover images into the directory the
// box server serves custom pictures from.
package coverstore
