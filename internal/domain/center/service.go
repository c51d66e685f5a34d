package center

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	codeMin         = 10000
	codeMax         = 99999
	maxCodeAttempts = 10
)

// CodeGenerator returns a candidate center code.
type CodeGenerator func() (string, error)

// RandomCode draws a uniformly random code in [10000, 99999].
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate center code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

type Service struct {
	repo     Repository
	generate CodeGenerator
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, generate: RandomCode}
}

// Create registers a center under a freshly drawn code. A code collision is
// retried with a new draw; a name collision is returned as ErrNameTaken.
func (s *Service) Create(ctx context.Context, name string) (*Center, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, err
		}
		c := &Center{Name: name, Code: code}
		err = s.repo.Create(ctx, c)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, ErrCodeSpace
}

func (s *Service) Get(ctx context.Context, code string) (*Center, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

func (s *Service) List(ctx context.Context) ([]*Center, error) {
	return s.repo.List(ctx)
}
