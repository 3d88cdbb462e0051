package youtrack

import (
	"context"
	"errors"
	"iter"
)

// ErrEmptyIterator is returned by First when the sequence yields no items.
var ErrEmptyIterator = errors.New("youtrack: iterator is empty")

// Iterator is a pull iterator. HasNext may block to fetch more items.
type Iterator[T any] interface {
	HasNext(ctx context.Context) (bool, error)
	Next() (T, error)
}

// FromSlice yields the items of an in-memory collection.
func FromSlice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// FromSeq lifts an infallible sequence.
func FromSeq[T any](seq iter.Seq[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item := range seq {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// FromIterator drains a pull iterator. A failure is yielded once and ends
// the sequence.
func FromIterator[T any](ctx context.Context, it Iterator[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for {
			ok, err := it.HasNext(ctx)
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			item, err := it.Next()
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect gathers all items from a sequence into a slice.
// It stops on the first error and returns all items collected so far along with the error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	result := make([]T, 0)
	for item, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, item)
	}
	return result, nil
}

// CollectN gathers up to n items from a sequence.
func CollectN[T any](seq iter.Seq2[T, error], n int) ([]T, error) {
	result := make([]T, 0, max(n, 0))
	if n <= 0 {
		return result, nil
	}
	for item, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, item)
		if len(result) >= n {
			break
		}
	}
	return result, nil
}

// First returns the first item, or ErrEmptyIterator if there is none.
func First[T any](seq iter.Seq2[T, error]) (T, error) {
	for item, err := range seq {
		return item, err
	}
	var zero T
	return zero, ErrEmptyIterator
}

// Take yields at most n items.
func Take[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if n <= 0 {
			return
		}
		count := 0
		for item, err := range seq {
			if !yield(item, err) || err != nil {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}

// Filter yields only items matching pred.
func Filter[T any](seq iter.Seq2[T, error], pred func(T) bool) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if pred(item) && !yield(item, nil) {
				return
			}
		}
	}
}

// Map transforms each item with fn.
func Map[T, U any](seq iter.Seq2[T, error], fn func(T) U) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		for item, err := range seq {
			if err != nil {
				var zero U
				yield(zero, err)
				return
			}
			if !yield(fn(item), nil) {
				return
			}
		}
	}
}
