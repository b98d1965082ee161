package errx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors onto the unified Error type.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return Wrap(err, KindNotFound, NotFoundMessage)
	}

	return Wrap(err, KindStorage, StorageErrorMessage)
}
