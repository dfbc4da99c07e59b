package monitoring

import "go.uber.org/zap"

var zapNop = zap.NewNop()

func init() {
	zap.ReplaceGlobals(zapNop)
}
