//go:build !linux

package gpio

import (
	"errors"

	"github.com/openhold/doorkeeper/internal/infrastructure/config"
)

// The character-device board requires Linux.
func newBoard(config.GPIOConfig) (Board, error) {
	return nil, errors.New("gpio: hardware board requires Linux; set gpio.enabled to false")
}
