package servlet

// Endpoint is a servlet path relative to the web application root.
type Endpoint string

const (
	EndpointLogin          Endpoint = "LoginServlet"
	EndpointAdminLogin     Endpoint = "AdminLoginServlet"
	EndpointRegister       Endpoint = "RegisterServlet"
	EndpointLogout         Endpoint = "LogoutServlet"
	EndpointReactivation   Endpoint = "RequestReactivationServlet"
	EndpointProfile        Endpoint = "ProfileServlet"
	EndpointChangePassword Endpoint = "ChangeServlet"
	EndpointCart           Endpoint = "CartServlet"
	EndpointWishlist       Endpoint = "WishlistServlet"
	EndpointProduct        Endpoint = "ProductServlet"
	EndpointCategory       Endpoint = "CategoryServlet"
	EndpointImage          Endpoint = "ImageServlet"
	EndpointPayment        Endpoint = "PaymentServlet"
	EndpointOrderHistory   Endpoint = "OrderHistoryServlet"
	EndpointReorder        Endpoint = "ReorderServlet"
	EndpointAdmin          Endpoint = "AdminServlet"
	EndpointUnblock        Endpoint = "UnblockManagementServlet"
)
