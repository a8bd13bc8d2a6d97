package workflows

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/PolarWolf314/casevault/internal/audit"
	"github.com/PolarWolf314/casevault/internal/secrets"
	"github.com/PolarWolf314/casevault/internal/vault"

	"golang.org/x/sync/errgroup"
)

// VerifyOptions configures the verify workflow.
type VerifyOptions struct {
	// Vault is the case to verify.
	Vault *vault.Manager

	// Password unlocks the vault. If empty, the live session is used.
	Password string

	// Deep authenticates every chunk of streaming artifacts instead of only
	// the first.
	Deep bool

	// Workers bounds how many artifacts are checked at once. Zero selects
	// the number of CPUs.
	Workers int

	// Progress is called once per artifact, in completion order.
	Progress ProgressFunc
}

// VerifyResult contains the outcome of a verify operation.
type VerifyResult struct {
	// FilesVerified is the number of artifacts that authenticated.
	FilesVerified int

	// FilesFailed is the number of artifacts that did not.
	FilesFailed int

	// TokenFiles and StreamFiles count verified artifacts by scheme.
	TokenFiles  int
	StreamFiles int

	// Errors explains each failure.
	Errors []FileError

	// Deep indicates whether every streaming chunk was checked.
	Deep bool
}

// VerifyIntegrity checks that every artifact in the case decrypts under the
// vault key. Token artifacts are decrypted in full. Streaming artifacts are
// checked up to their first chunk, or entirely with Deep. No plaintext is
// written.
//
// Returns ErrVaultNotFound if the case is not encrypted.
// Returns ErrInvalidPassword if password is wrong.
// Returns ErrVaultLocked if no password is given and the vault is locked.
func VerifyIntegrity(ctx context.Context, opts VerifyOptions) (*VerifyResult, error) {
	v := opts.Vault
	if v == nil {
		return nil, errNoVault
	}

	s, err := openSession(v, opts.Password)
	if err != nil {
		return nil, err
	}

	artifacts, err := v.FindFiles(vault.Artifacts)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	result := &VerifyResult{Deep: opts.Deep}
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range artifacts {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			rel := relPath(v, path)
			format, err := v.VerifyArtifactWithSession(gctx, s, path, opts.Deep)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()

			done++
			opts.Progress.report("Verified "+rel, done, len(artifacts))

			if err != nil {
				v.Logger().Debugf("Verification failed for %s: %v", rel, err)
				result.FilesFailed++
				result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
				return nil
			}

			result.FilesVerified++
			if format == secrets.FormatStream {
				result.StreamFiles++
			} else {
				result.TokenFiles++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Path < result.Errors[j].Path
	})

	v.Logger().Infof("Verified %d artifacts, %d failed", result.FilesVerified, result.FilesFailed)

	entry := audit.NewEntry("verify")
	entry.SessionID = s.ID
	entry.FilesCount = result.FilesVerified
	entry.FailedCount = result.FilesFailed
	entry.Deep = opts.Deep
	audit.Log(v.AuditPath(), entry)

	return result, nil
}
