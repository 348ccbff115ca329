package bind_group_provider

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset. The shadow pager stages these each
// frame (page table at offset 0, parameter block updates); the owning renderer is
// responsible for flushing them via queue.WriteBuffer and for growing the underlying
// buffer on demand, deferring the old buffer's release for a few frames so in-flight
// GPU work never reads freed memory.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
