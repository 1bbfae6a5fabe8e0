package store

// Collection names, preserved from the client contract.
const (
	CollectionParkingLots     = "parking_lots"
	CollectionFeedback        = "feedback"
	CollectionBookings        = "bookings"
	CollectionUsers           = "users"
	CollectionStripeCustomers = "stripe_customers"
)

// Field names used by equality queries.
const (
	FieldEmail         = "email"
	FieldBookingUserID = "bookingUserId"
	FieldOperatorID    = "operatorId"
	FieldCustomerID    = "customer_id"
	FieldIntentID      = "id"
)

// PaymentsCollection returns the per-user payment subcollection name.
func PaymentsCollection(userID string) string {
	return CollectionStripeCustomers + "/" + userID + "/payments"
}
