package model

type MomentumState string

const (
	MomentumCrash    MomentumState = "crash"
	MomentumStable   MomentumState = "stable"
	MomentumBuilding MomentumState = "building"
)
