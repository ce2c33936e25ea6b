// Package logx is the driver-wide structured logging call-site, a thin
// shim over zerolog's global logger. It exists so call sites read the
// same way the teacher lineage's vendored smplog helper did
// (Infof/Warnf/Errf/Debugf), without depending on a module that has no
// fetchable source in this tree.
package logx

import "github.com/rs/zerolog/log"

func Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}
