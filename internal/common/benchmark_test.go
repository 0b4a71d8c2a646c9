package common

import "testing"

func BenchmarkFloorMicros(b *testing.B) {
	ts := int64(1_700_000_000_000_000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FloorMicros(ts, PartitionByDay)
	}
}

func BenchmarkPartitionName(b *testing.B) {
	floor := FloorMicros(1_700_000_000_000_000, PartitionByHour)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PartitionName(floor, PartitionByHour)
	}
}
