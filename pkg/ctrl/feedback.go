package ctrl

// FeedbackModel is a first-order actuator response per pole axis:
// velocity responds to duty u as v' = (K1*u - v) / T1.
type FeedbackModel struct {
	K1 Polar
	T1 Polar
}

// FeedbackGain holds the PID gains per pole axis.
type FeedbackGain struct {
	Kp Polar
	Ki Polar
	Kd Polar
}

// FeedbackBreakdown exposes the terms of the last output.
type FeedbackBreakdown struct {
	FF, FBP, FBI, FBD Polar
	U                 Polar
}

// FeedbackController combines model inversion feedforward and PID
// feedback on velocity error.
type FeedbackController struct {
	Model FeedbackModel
	Gain  FeedbackGain

	eInt Polar
	last FeedbackBreakdown
}

// NewFeedbackController creates a controller.
func NewFeedbackController(model FeedbackModel, gain FeedbackGain) *FeedbackController {
	return &FeedbackController{Model: model, Gain: gain}
}

// Reset clears the integral term.
func (c *FeedbackController) Reset() {
	c.eInt = Polar{}
	c.last = FeedbackBreakdown{}
}

// Update computes the duty in pole coordinates for one period ts.
func (c *FeedbackController) Update(refV, estV, refA, estA Polar, ts float64) Polar {
	b := &c.last
	b.FF = c.Model.T1.Mul(refA).Add(refV).Div(c.Model.K1)
	e := refV.Sub(estV)
	c.eInt = c.eInt.Add(e.Scale(ts))
	b.FBP = c.Gain.Kp.Mul(e)
	b.FBI = c.Gain.Ki.Mul(c.eInt)
	b.FBD = c.Gain.Kd.Mul(refA.Sub(estA))
	b.U = b.FF.Add(b.FBP).Add(b.FBI).Add(b.FBD)
	return b.U
}

// Breakdown returns the terms of the last Update.
func (c *FeedbackController) Breakdown() FeedbackBreakdown {
	return c.last
}

// ComplementaryFilter blends a direct velocity measurement low with an
// integrated one high: alpha*low + (1-alpha)*high, per axis.
func ComplementaryFilter(alpha, low, high Polar) Polar {
	one := Polar{Tra: 1, Rot: 1}
	return alpha.Mul(low).Add(one.Sub(alpha).Mul(high))
}
