package async

// ErrAble 在后台运行 fn，结果写入返回的 channel 后关闭
func ErrAble(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- fn()
		close(ch)
	}()
	return ch
}

// Offer sends v on ch, dropping whatever value is still buffered there.
// ch must be buffered and Offer must be its only sender.
func Offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
