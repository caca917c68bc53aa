// Package generics counts entities kept in a generic repository.
package generics

import "context"

// Repository stores values of type V under keys of type K.
//
//behave:mockable
type Repository[K comparable, V any] interface {
	Load(ctx context.Context, key K) (V, bool)
	Save(ctx context.Context, key K, value V) error
}

// Increment adds one to the counter under key, starting from zero.
func Increment[K comparable](ctx context.Context, repo Repository[K, int], key K) (int, error) {
	current, _ := repo.Load(ctx, key)

	err := repo.Save(ctx, key, current+1)
	if err != nil {
		return 0, err
	}

	return current + 1, nil
}
