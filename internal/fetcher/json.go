package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}]. Numbers decode as json.Number so
// large integer ids keep their precision.
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		decoder.UseNumber()

		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				errCh <- eris.New("json: empty document")
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil {
			errCh <- eris.Wrap(err, "json: read closing token")
			return
		}

		// The array must be the whole document.
		if tok, err := decoder.Token(); !errors.Is(err, io.EOF) {
			if err != nil {
				errCh <- eris.Wrap(err, "json: trailing data after array")
				return
			}
			errCh <- eris.Errorf("json: trailing data after array: %v", tok)
		}
	}()

	return outCh, errCh
}

// CollectJSONArray decodes a whole JSON array into memory.
func CollectJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items, errs := DecodeJSONArray[T](ctx, r)
	out := []T{}
	for item := range items {
		out = append(out, item)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}
