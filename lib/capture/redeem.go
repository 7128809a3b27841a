// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/claimcheck/lib/claimstore"
)

// Redeem returns a reader over the original payload of a capture.
// Inline captures are decoded from the descriptor; external ones are
// redeemed from store, which may be nil for inline descriptors.
func Redeem(store *claimstore.Store, descriptor Descriptor) (io.ReadCloser, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("redeeming capture: %w", err)
	}
	if descriptor.Mode == ModeInline {
		return claimstore.NewDecodingReader(strings.NewReader(descriptor.Data), descriptor.Compression)
	}
	if store == nil {
		return nil, fmt.Errorf("redeeming external capture %s without a store", descriptor.Data)
	}
	return store.Redeem(descriptor.Data)
}
