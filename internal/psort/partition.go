package psort

// partition は buf[low..high] を中央要素をピボットとして Hoare 方式で分割し、
// 分割点 j を返す。呼び出し後、buf[low..j] の要素はすべてピボット以下、
// buf[j+1..high] の要素はすべてピボット以上になる。
// 要素数 2 以上の範囲では low <= j < high が成り立つため、両側とも空にならない。
func partition[T any](buf []T, low, high int, less func(a, b T) bool) int {
	if low >= high {
		return low
	}

	// ピボットは固定で中央。乱択はしない
	pivot := buf[low+(high-low)/2]

	i, j := low-1, high+1
	for {
		for {
			i++
			if !less(buf[i], pivot) {
				break
			}
		}
		for {
			j--
			if !less(pivot, buf[j]) {
				break
			}
		}
		if i >= j {
			return j
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
}
