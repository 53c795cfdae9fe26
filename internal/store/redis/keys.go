// Package redis publishes chart snapshots and signals and consumes bar
// streams over Redis.
//
// Key layout, per symbol:
//
//	bar:{sym}             stream of closed bars (field "data")
//	pub:bar:{sym}         pub/sub of closed and forming bars
//	chart:latest:{sym}    latest snapshot JSON (SET, TTL)
//	pub:chart:{sym}       pub/sub of snapshots
//	signal:{sym}          stream of signals
//	pub:signal:{sym}      pub/sub of signals
package redis

import "strings"

const (
	barStreamPrefix    = "bar:"
	barChannelPrefix   = "pub:bar:"
	latestPrefix       = "chart:latest:"
	chartChannelPrefix = "pub:chart:"
	signalStreamPrefix = "signal:"
	signalChanPrefix   = "pub:signal:"

	// ChartChannelPattern matches every snapshot channel.
	ChartChannelPattern = chartChannelPrefix + "*"
	// SignalChannelPattern matches every signal channel.
	SignalChannelPattern = signalChanPrefix + "*"
	// BarChannelPattern matches every bar channel.
	BarChannelPattern = barChannelPrefix + "*"
)

func BarStream(symbol string) string     { return barStreamPrefix + symbol }
func BarChannel(symbol string) string    { return barChannelPrefix + symbol }
func LatestKey(symbol string) string     { return latestPrefix + symbol }
func ChartChannel(symbol string) string  { return chartChannelPrefix + symbol }
func SignalStream(symbol string) string  { return signalStreamPrefix + symbol }
func SignalChannel(symbol string) string { return signalChanPrefix + symbol }

// SymbolFromChannel strips the pub/sub prefix, e.g. "pub:chart:NIFTY" -> "NIFTY".
func SymbolFromChannel(channel string) string {
	for _, p := range []string{chartChannelPrefix, signalChanPrefix, barChannelPrefix} {
		if strings.HasPrefix(channel, p) {
			return channel[len(p):]
		}
	}
	return channel
}
