/*
Package wakesignal provides a single-slot, auto-resetting wake primitive.

A Signal lets goroutines park until another goroutine notifies them. It is a
three-state machine:

	idle      --Notify-->  signaled
	idle      --Wait---->  waiting(1)
	signaled  --Wait---->  idle        (returns immediately)
	signaled  --Notify-->  signaled    (coalesced, no-op)
	waiting(n)--Wait---->  waiting(n+1)
	waiting(n)--Notify-->  waiting(n-1), or idle when n == 1

Waiters are woken strictly in arrival order. Because at most one pending
notification is remembered, notify-before-wait and notify-after-wait look the
same to a single waiter, which is what a level-triggered "something changed
since I last looked" event needs:

	sig := wakesignal.New()

	go func() {
		refill()
		sig.Notify()
	}()

	for !ready() {
		if err := sig.Wait(ctx); err != nil {
			return err
		}
	}

Wait honours context cancellation. A canceled waiter never swallows a
notification.
*/
package wakesignal
