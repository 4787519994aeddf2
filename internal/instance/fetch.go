package instance

import (
	"context"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/model"
)

// HeaderFetchFunc fetches a header by address from a DHT peer over the
// wire (§4.5's "the validator walks backwards... repeatedly fetching
// header entries by hash from peers"). It is supplied through
// Config.HeaderFetch; when none is set, every remote header lookup
// reports not-found. Instance only needs the function shape so it stays
// free of any transport import.
type HeaderFetchFunc func(ctx context.Context, addr address.Address) (model.ChainHeader, bool, error)

// remoteFetcher adapts a HeaderFetchFunc to validation.BuildPackage's
// dependencyFetcher parameter. dependencyFetcher is unexported, but Go
// interface satisfaction is structural: any type whose method set
// matches satisfies it regardless of which package defines the type, so
// remoteFetcher never needs to name validation.dependencyFetcher itself.
type remoteFetcher struct {
	fetch HeaderFetchFunc
}

func (f remoteFetcher) FetchHeader(ctx context.Context, addr address.Address) (model.ChainHeader, bool, error) {
	if f.fetch == nil {
		return model.ChainHeader{}, false, nil
	}
	return f.fetch(ctx, addr)
}

// FetchEntry always reports not-found: §4.5's DHT-side validation-package
// walk fetches header entries by hash only, never entry bodies, so a
// remote PackageChainEntries/PackageChainFull build never accumulates
// entries (only the local authoring path does, via localFetcher).
func (f remoteFetcher) FetchEntry(_ context.Context, _ address.Address) (model.Entry, bool, error) {
	return model.Entry{}, false, nil
}
