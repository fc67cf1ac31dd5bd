package observability

const (
	MUsecaseRequests     = "usecase_requests_total"
	MUsecaseDuration     = "usecase_duration_seconds"
	MHTTPRequests        = "http_requests_total"
	MHTTPRequestDuration = "http_request_duration_seconds"
	MCheckoutOrders      = "checkout_orders_total"
	MStockReservations   = "stock_reservations_total"
)
