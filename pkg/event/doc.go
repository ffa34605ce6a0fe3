// Package event provides the typed in-process event bus used across the
// library.
//
// The bus routes immutable event values to handlers by event type and an
// optional dispatch key. A handler registered with KeyAll receives every
// event of its type; a handler registered with a concrete key (an interface
// id or data-point address) receives only events carrying exactly that key.
//
// Publish runs all matching handlers concurrently and waits for them, so
// handlers may perform their own blocking work without serializing the
// fan-out. Handler errors and panics are logged and isolated; nothing a
// handler does can reach the publisher or other handlers.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	unsub := bus.Subscribe(event.TypeSystemStatusChanged, event.KeyAll,
//	    func(ctx context.Context, ev event.Event) error {
//	        status := ev.(event.SystemStatusChanged)
//	        for _, issue := range status.Issues {
//	            fmt.Println(issue.InterfaceID, issue.MismatchType, issue.MismatchCount)
//	        }
//	        return nil
//	    })
//	defer unsub()
//
//	bus.Publish(ctx, event.NewSystemStatusChanged())
//
// The unsubscribe function is idempotent; calling it repeatedly is harmless.
package event
