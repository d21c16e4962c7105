package social

// ChunkIDs partitions ids into contiguous chunks of at most size elements,
// preserving original order. Partitioning N items yields ceil(N/size)
// chunks; the concatenation of all chunks recovers the input exactly.
func ChunkIDs(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
