// Package cacheview provides CacheView, the handle through which every
// filter, coder and compositor reads and writes an image's pixels.
//
// A view is bound to one image and owns a fixed arena of nexuses, one per
// worker. Every pixel call names the calling worker's id, an integer in
// [0, Threads()) such as the id parallel.Rows hands to its callback, and the
// view routes the request to that worker's nexus. Workers with distinct ids
// may call into the same view concurrently.
//
// # Authentic and Virtual Pixels
//
// Authentic pixels are writable and must lie inside the image. A worker
// writes through the slice returned by GetAuthenticPixels or
// QueueAuthenticPixels and commits with SyncAuthenticPixels. Virtual pixels
// are read-only and may extend past the image in any direction; pixels
// outside are synthesized by the view's virtual pixel method.
//
// Any slice returned by a view stays valid only until the next pixel call
// with the same id, or until the view is destroyed.
//
// # Errors
//
// Runtime failures are thrown into the image's exception context and
// returned. The single-pixel virtual accessors instead report false and
// return the image background color. Calling a destroyed view returns
// ErrDestroyed, or panics with it from methods without an error result. An
// id outside [0, Threads()) panics.
//
// # Example
//
//	view, err := cacheview.Acquire(img)
//	if err != nil {
//	    return err
//	}
//	defer view.Destroy()
//	err = parallel.Rows(ctx, view.Threads(), img.Rows(), func(id, y int) error {
//	    q, err := view.GetAuthenticPixels(id, 0, y, img.Columns(), 1)
//	    if err != nil {
//	        return err
//	    }
//	    for i := range q {
//	        q[i] = pixel.QuantumRange - q[i]
//	    }
//	    return view.SyncAuthenticPixels(id)
//	})
package cacheview
