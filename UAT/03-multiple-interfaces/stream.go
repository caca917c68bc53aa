// Package stream drains readers that must also be closed.
package stream

// Reader reads chunks until it returns ok == false.
//
//behave:mockable
type Reader interface {
	Next() (chunk string, ok bool)
}

// Closer releases a resource.
//
//behave:mockable
type Closer interface {
	Close() error
}

// ReadCloser is a Reader that must be closed.
type ReadCloser interface {
	Reader
	Closer
}

// Drain concatenates every chunk of rc and closes it.
func Drain(rc ReadCloser) (string, error) {
	var out string

	for {
		chunk, ok := rc.Next()
		if !ok {
			break
		}

		out += chunk
	}

	return out, rc.Close()
}
