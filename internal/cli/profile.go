package cli

import (
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

// startProfiler pushes continuous profiles to server until the returned
// stop is called.
func startProfiler(server, runID string) (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "ammcpi.simulate",
		ServerAddress:   server,
		Tags: map[string]string{
			"run": runID,
		},
		Logger: profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = profiler.Stop()
	}, nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{}) {
	logs.Infof("pyroscope: "+format, args...)
}

func (profilerLogger) Debugf(_ string, _ ...interface{}) {}

func (profilerLogger) Errorf(format string, args ...interface{}) {
	logs.Errorf("pyroscope: "+format, args...)
}
