/*
Package atomicfile replaces a file in a way that survives a crash.

Data is written to a temporary file in the same directory which is
renamed over the destination only after it was fully written and synced.
Until then the destination keeps its previous content.

	func saveMovies(path string, d []byte) error {
		f, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		// deletes temporary file on early return
		defer f.RemoveIfNotClosed()

		if _, err = f.Write(d); err != nil {
			return err
		}
		return f.Close()
	}

Every rewrite of the movie storage file (add, update, delete, restore)
goes through it.
*/
package atomicfile
