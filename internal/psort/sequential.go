package psort

// sortRange は buf[low..high] をその場で逐次クイックソートする。
// 小さい側を再帰し大きい側はループで処理するので、スタック深さは O(log n)。
func sortRange[T any](buf []T, low, high int, less func(a, b T) bool) {
	for low < high {
		p := partition(buf, low, high, less)
		if p-low < high-p {
			sortRange(buf, low, p, less)
			low = p + 1
		} else {
			sortRange(buf, p+1, high, less)
			high = p
		}
	}
}
