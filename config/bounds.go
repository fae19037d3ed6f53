/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"cmp"
	"errors"
	"fmt"
)

// GetNonEmptyString retrieves a string that must be set to a non-empty value.
func GetNonEmptyString(dp DataProvider, key string) (string, error) {
	s, err := dp.GetString(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", dp.WrapKeyErr(key, errors.New("cannot be empty"))
	}
	return s, nil
}

// GetAtLeast retrieves a value with get and fails if it is less than lowest.
//
//	maxBackups, err := config.GetAtLeast(dp, "maxBackups", dp.GetInt, 1)
func GetAtLeast[T cmp.Ordered](dp DataProvider, key string, get func(key string) (T, error), lowest T) (T, error) {
	v, err := get(key)
	if err != nil {
		return v, err
	}
	if v < lowest {
		return v, dp.WrapKeyErr(key, fmt.Errorf("should be >= %v, got %v", lowest, v))
	}
	return v, nil
}

// GetPositive retrieves a value with get and fails if it is not greater than zero.
func GetPositive[T cmp.Ordered](dp DataProvider, key string, get func(key string) (T, error)) (T, error) {
	v, err := get(key)
	if err != nil {
		return v, err
	}
	var zero T
	if v <= zero {
		return v, dp.WrapKeyErr(key, fmt.Errorf("should be > 0, got %v", v))
	}
	return v, nil
}
