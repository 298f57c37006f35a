package service

import (
	"slices"

	"github.com/rl1809/train-booking/internal/core/domain"
)

// lowestFreeSeats picks the n lowest seat numbers in [1, capacity] not present
// in taken, in ascending order. Work is bounded by len(taken)+n, not capacity.
func lowestFreeSeats(capacity int, taken []int, n int) ([]int, error) {
	if n <= 0 || n > capacity {
		return nil, domain.ErrInvalidSeatCount
	}

	used := slices.Clone(taken)
	slices.Sort(used)
	used = slices.Compact(used)

	seats := make([]int, 0, n)
	next := 1
	for _, seat := range used {
		if seat < next {
			continue
		}
		if seat > capacity {
			break
		}
		for ; next < seat && len(seats) < n; next++ {
			seats = append(seats, next)
		}
		if len(seats) == n {
			return seats, nil
		}
		next = seat + 1
	}
	for ; next <= capacity && len(seats) < n; next++ {
		seats = append(seats, next)
	}
	if len(seats) < n {
		return nil, domain.ErrInsufficientCapacity
	}
	return seats, nil
}
