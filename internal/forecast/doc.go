// Package forecast produces revenue forecasts and client churn risk scores.
//
// Forecasts consume only the tenant's own history plus anonymized group
// trend data; another tenant's raw figures never enter the pipeline. The
// per-request pipeline is: collect history, detrend with ordinary least
// squares, seasonal-adjust from the anonymized industry series, blend the
// industry growth factor, emit an interval whose width grows with horizon
// and shrinks with history length.
//
// Churn is an RFM (recency/frequency/monetary) composite computed entirely
// from the tenant's own client base.
package forecast
