package logging

type nopLogger struct{}

// NewNop returns a Logger that discards everything. Fatal panics instead of exiting.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Init() {}

func (nopLogger) Debug(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Debugf(string, ...any)                                 {}
func (nopLogger) Info(Category, SubCategory, string, map[ExtraKey]any)  {}
func (nopLogger) Infof(string, ...any)                                  {}
func (nopLogger) Warn(Category, SubCategory, string, map[ExtraKey]any)  {}
func (nopLogger) Warnf(string, ...any)                                  {}
func (nopLogger) Error(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Errorf(string, ...any)                                 {}

func (nopLogger) Fatal(_ Category, _ SubCategory, msg string, _ map[ExtraKey]any) {
	panic(msg)
}

func (nopLogger) Fatalf(template string, _ ...any) {
	panic(template)
}
