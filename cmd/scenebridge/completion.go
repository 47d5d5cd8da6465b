package main

import (
	"strings"

	"github.com/posener/complete"

	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/preview"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// newCommandTypePredictor completes control command types for 'send'.
func newCommandTypePredictor() complete.Predictor {
	return complete.PredictSet(protocol.Commands...)
}

// newFormatPredictor completes image formats.
func newFormatPredictor() complete.Predictor {
	return &prefixPredictor{values: formatNames()}
}

// newTransportPredictor completes preview transports.
func newTransportPredictor() complete.Predictor {
	names := make([]string, 0, len(preview.Transports))
	for _, t := range preview.Transports {
		names = append(names, string(t))
	}
	return complete.PredictSet(names...)
}

func formatNames() []string {
	names := make([]string, 0, len(frame.Formats))
	for _, f := range frame.Formats {
		names = append(names, string(f))
	}
	return names
}

// prefixPredictor suggests values in the case the user started typing.
// Formats parse case-insensitively, so "pn" completes to "png".
type prefixPredictor struct {
	values []string
}

// Predict implements complete.Predictor interface.
func (p *prefixPredictor) Predict(args complete.Args) []string {
	lower := args.Last != "" && strings.ToLower(args.Last) == args.Last
	results := make([]string, 0, len(p.values))
	for _, v := range p.values {
		if lower {
			v = strings.ToLower(v)
		}
		if strings.HasPrefix(v, args.Last) {
			results = append(results, v)
		}
	}
	return results
}
