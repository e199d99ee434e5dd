package connectors

// UnimplementedSourceReader can be embedded by readers that only need part
// of the SourceReader interface.
type UnimplementedSourceReader struct{}

func (u *UnimplementedSourceReader) Checkpoint() []byte {
	panic("unimplemented")
}

func (u *UnimplementedSourceReader) ReadEvents() ([][]byte, error) {
	panic("unimplemented")
}

func (u *UnimplementedSourceReader) SetSplits(splits []*SourceSplit) error {
	panic("unimplemented")
}

var _ SourceReader = (*UnimplementedSourceReader)(nil)
