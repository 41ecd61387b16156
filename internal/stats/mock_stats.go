package stats

// NopRecorder discards all metrics. Used in tests where the recording
// itself is not under assertion.
type NopRecorder struct{}

func (NopRecorder) SessionOpened()           {}
func (NopRecorder) SessionClosed()           {}
func (NopRecorder) CommandDispatched(string) {}
func (NopRecorder) CommandRejected(string)   {}
func (NopRecorder) BroadcastDelivered(int)   {}
func (NopRecorder) MessagePersisted()        {}
func (NopRecorder) MessagePersistFailed()    {}
func (NopRecorder) OutboxEventProcessed()    {}
func (NopRecorder) OutboxEventFailed()       {}
