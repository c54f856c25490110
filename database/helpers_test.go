package database_test

import "strconv"

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func ptr[T any](v T) *T {
	return &v
}
