package slider

// TimelineTime maps a click on the thumbnail timeline to a media time.
func TimelineTime(clientX, width, duration float64) float64 {
	if width <= 0 || duration <= 0 {
		return 0
	}
	t := clientX / width * duration
	if t < 0 {
		return 0
	}
	if t > duration {
		return duration
	}
	return t
}

// PlayheadPercent positions the playhead marker over the timeline.
func PlayheadPercent(current, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return current / duration * 100
}

// ThumbnailSlotPercent is the width of one per-second thumbnail slot.
func ThumbnailSlotPercent(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return 100 / duration
}
