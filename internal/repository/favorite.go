package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// toggleFavorite flips membership atomically and returns 1 when the event is
// now a favorite, 0 when it was removed.
var toggleFavorite = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 1 then
  redis.call("SREM", KEYS[1], ARGV[1])
  return 0
end
redis.call("SADD", KEYS[1], ARGV[1])
return 1
`)

// FavoriteRepository keeps each student's favorites as a Redis set. Favorites
// are owned per student and never coordinate with registrations.
type FavoriteRepository struct {
	rdb *redis.Client
}

// NewFavoriteRepository constructs a FavoriteRepository.
func NewFavoriteRepository(rdb *redis.Client) *FavoriteRepository {
	return &FavoriteRepository{rdb: rdb}
}

func favoritesKey(studentID string) string {
	return fmt.Sprintf("favorites:%s", studentID)
}

// Toggle flips the favorite marker and reports the new state.
func (r *FavoriteRepository) Toggle(ctx context.Context, studentID, eventID string) (bool, error) {
	n, err := toggleFavorite.Run(ctx, r.rdb, []string{favoritesKey(studentID)}, eventID).Int()
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return n == 1, nil
}

// IsFavorite reports whether the student marked the event.
func (r *FavoriteRepository) IsFavorite(ctx context.Context, studentID, eventID string) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, favoritesKey(studentID), eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return ok, nil
}

// List returns the event ids the student marked.
func (r *FavoriteRepository) List(ctx context.Context, studentID string) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, favoritesKey(studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return ids, nil
}

// Remove drops the marker, used when an event disappears.
func (r *FavoriteRepository) Remove(ctx context.Context, studentID, eventID string) error {
	if err := r.rdb.SRem(ctx, favoritesKey(studentID), eventID).Err(); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}
