package internal

func StartNeeded(desired, target, floor int32) bool {
	if desired == 0 {
		return true
	}
	return desired < min(target, floor)
}

func DesiredAfterStart(target, floor, ceiling int32) int32 {
	desired := max(target, floor)
	if ceiling > 0 && desired > ceiling {
		desired = ceiling
	}
	return desired
}

func StopNeeded(desired, floor int32) bool {
	return desired > 0 || floor > 0
}
