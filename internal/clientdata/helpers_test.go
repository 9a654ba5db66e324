package clientdata

import "github.com/rs/zerolog"

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}
