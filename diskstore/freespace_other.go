/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

//go:build !unix

package diskstore

import "errors"

func freeDiskSpace(string) (int64, error) {
	return 0, errors.New("free disk space probe is not supported on this platform")
}
