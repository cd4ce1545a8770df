package channel

import "context"

// Memory is an in-process Channel backed by a buffered Go channel.
// Send never blocks; when the buffer is full the message is dropped.
type Memory struct {
	ch chan Message
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 16
	}
	return &Memory{ch: make(chan Message, size)}
}

func (m *Memory) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.ch <- msg:
		return nil
	default:
		return ErrFull
	}
}

func (m *Memory) Receive(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-m.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
