package email

const (
	subjectLeadWelcome       = "Thanks for checking availability, %s"
	subjectWaitlist          = "We're not in your area yet"
	subjectCheckoutReminder  = "Your home internet order is waiting"
	subjectOrderConfirmation = "Order confirmed: %s"
)
