package pipeline

import "os"

// HandleSignals routes process signals received on sigs to the coordinator.
// The first signal trips the shutdown token, or joins a drain that is already
// under way for another reason. The second signal abandons the drain through
// the forced-exit hook. The handler goroutine exits when Run completes or
// sigs is closed.
func (c *Coordinator) HandleSignals(sigs <-chan os.Signal) {
	go func() {
		received := 0
		for {
			select {
			case <-c.stopped:
				return
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				received++
				if received == 1 {
					if c.token.Trip("signal: " + sig.String()) {
						c.logger.Info("pipeline: signal received, shutting down",
							"signal", sig.String())
					} else {
						c.logger.Info("pipeline: signal received, already draining",
							"signal", sig.String(),
							"reason", c.token.Reason())
					}
					continue
				}
				c.logger.Error("pipeline: second signal, forcing exit",
					"signal", sig.String(),
					"buffered_lost", c.queue.Len(),
					"state", c.State().String())
				c.forceExit(ExitForced)
				return
			}
		}
	}()
}
