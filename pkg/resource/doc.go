// Package resource provides async data loading built on pulse signals.
//
// Resources are reactive primitives that handle the complete lifecycle of
// asynchronous data fetching, including:
//
//   - Pending, Loading, Ready, and Error states, each observable as a signal
//   - Automatic dependency tracking and re-fetching via keyed resources
//   - Stale time management and explicit invalidation
//   - Retry with a fixed delay between attempts
//   - Optimistic local mutation
//
// Basic usage:
//
//	user := resource.New(func(ctx context.Context) (*User, error) {
//	    return db.Users.Find(ctx, id)
//	})
//
//	pulse.CreateEffect(func() pulse.Cleanup {
//	    if user.IsReady() {
//	        render(user.Data())
//	    }
//	    return nil
//	})
package resource
