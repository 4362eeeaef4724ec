//go:build !linux && !darwin

package handler

func diskStats(path string) (total, free int64, ok bool) {
	return 0, 0, false
}
