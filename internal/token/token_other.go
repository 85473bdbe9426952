//go:build !unix

package token

import (
	"context"

	"github.com/srediag/shm-pool/internal/shm"
)

// Token is unavailable on this platform.
type Token struct{}

// Create is unavailable on this platform.
func Create(dir, name string) (*Token, error) { return nil, shm.ErrUnsupported }

// Open is unavailable on this platform.
func Open(dir, name string) (*Token, error) { return nil, shm.ErrUnsupported }

// Unlink is unavailable on this platform.
func Unlink(dir, name string) error { return shm.ErrUnsupported }

func (t *Token) Name() string                   { return "" }
func (t *Token) Path() string                   { return "" }
func (t *Token) TryWait() (bool, error)         { return false, shm.ErrUnsupported }
func (t *Token) Wait(ctx context.Context) error { return shm.ErrUnsupported }
func (t *Token) Post() error                    { return shm.ErrUnsupported }
func (t *Token) Held() bool                     { return false }
func (t *Token) Close() error                   { return nil }
