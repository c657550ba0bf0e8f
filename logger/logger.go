package logger

import "go.uber.org/zap"

var Log *zap.Logger

func Init(env string) {
	if env == "development" {
		Log = zap.Must(zap.NewDevelopment())
		return
	}
	Log = zap.Must(zap.NewProduction())
}

func Sugar() *zap.SugaredLogger {
	return Log.Sugar()
}
