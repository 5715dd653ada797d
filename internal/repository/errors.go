package repository

import "errors"

// ErrPlanNotFound indicates the named plan does not exist on disk.
var ErrPlanNotFound = errors.New("plan not found")

// ErrPlanExists indicates a plan with the same name already exists.
var ErrPlanExists = errors.New("plan already exists")

// ErrRecordNotFound indicates the record does not exist within the plan.
var ErrRecordNotFound = errors.New("record not found")
