// Package cratesvc is the read-only service facade: it composes the
// download, cache, and query layers behind the operations the HTTP API
// exposes, dispatching each CPU-bound query to its own blocking worker so a
// slow parse or regex scan never ties up the request goroutine directly.
package cratesvc

import (
	"context"

	"github.com/standardbeagle/cratedocs/internal/cratecache"
	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/download"
	"github.com/standardbeagle/cratedocs/internal/pkgvalue"
	"github.com/standardbeagle/cratedocs/internal/query"
)

// Service is the read-only facade the HTTP API and GitHub routes call into.
type Service struct {
	downloader *download.Downloader
	cache      *cratecache.Cache
}

// New builds a Service over a cache and a downloader.
func New(cache *cratecache.Cache, downloader *download.Downloader) *Service {
	return &Service{downloader: downloader, cache: cache}
}

// GetPackage returns the indexed Package for a crate version, downloading and
// building it on a cache miss. Concurrent misses for the same key collapse
// into one build.
func (s *Service) GetPackage(ctx context.Context, cv cratetypes.CrateVersion) (*pkgvalue.Package, error) {
	return s.cache.GetOrBuild(ctx, cv, func(ctx context.Context, cv cratetypes.CrateVersion) (*pkgvalue.Package, error) {
		return runBlocking(ctx, func() (*pkgvalue.Package, error) {
			tarBytes, err := s.downloader.FetchTar(ctx, cv)
			if err != nil {
				return nil, err
			}
			return pkgvalue.Build(cv, tarBytes)
		})
	})
}

// GetFile extracts the requested line range from a file, end to end.
func (s *Service) GetFile(ctx context.Context, cv cratetypes.CrateVersion, relPath string, rng cratetypes.FileLineRange) (query.FileBytes, error) {
	pkg, err := s.GetPackage(ctx, cv)
	if err != nil {
		return query.FileBytes{}, err
	}
	return runBlocking(ctx, func() (query.FileBytes, error) {
		return query.GetFile(pkg, relPath, rng)
	})
}

// ListDirectory lists the immediate contents of a directory, end to end.
func (s *Service) ListDirectory(ctx context.Context, cv cratetypes.CrateVersion, relPath string) (cratetypes.DirectoryListing, error) {
	pkg, err := s.GetPackage(ctx, cv)
	if err != nil {
		return cratetypes.DirectoryListing{}, err
	}
	return runBlocking(ctx, func() (cratetypes.DirectoryListing, error) {
		return query.ListDirectory(pkg, relPath)
	})
}

// SearchDeclarations searches the indexed top-level declarations, end to end.
func (s *Service) SearchDeclarations(ctx context.Context, cv cratetypes.CrateVersion, q cratetypes.ItemQuery) ([]cratetypes.Item, error) {
	pkg, err := s.GetPackage(ctx, cv)
	if err != nil {
		return nil, err
	}
	return runBlocking(ctx, func() ([]cratetypes.Item, error) {
		return query.SearchDeclarations(pkg, q), nil
	})
}

// SearchLines searches file contents line by line, end to end.
func (s *Service) SearchLines(ctx context.Context, cv cratetypes.CrateVersion, q cratetypes.LineQuery) ([]cratetypes.Line, error) {
	pkg, err := s.GetPackage(ctx, cv)
	if err != nil {
		return nil, err
	}
	return runBlocking(ctx, func() ([]cratetypes.Line, error) {
		return query.SearchLines(pkg, q)
	})
}

// runBlocking runs fn on its own goroutine and returns its result, unblocking
// early if ctx is cancelled first. fn keeps running to completion in the
// background even when the caller gives up early; it never touches shared
// mutable state outside of what it returns, so an abandoned goroutine is
// harmless.
func runBlocking[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	resultChan := make(chan result, 1)

	go func() {
		val, err := fn()
		resultChan <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-resultChan:
		return r.val, r.err
	}
}
