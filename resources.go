package commerce

import (
	"context"
)

func (c *Client) GetAccounts(ctx context.Context, opts ListOptions) (Page[Account], error) {
	return getPage[Account](ctx, c, "accounts", opts.query())
}

func (c *Client) GetAccount(ctx context.Context, id string) (Account, error) {
	path, err := resourcePath("accounts", id)
	if err != nil {
		return Account{}, err
	}
	return getOne[Account](ctx, c, apiRequest{path: path})
}

func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (Account, error) {
	return postOne[Account](ctx, c, "accounts", req)
}

func (c *Client) GetCurrentUser(ctx context.Context) (User, error) {
	return getOne[User](ctx, c, apiRequest{path: "user"})
}

func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	path, err := resourcePath("users", id)
	if err != nil {
		return User{}, err
	}
	return getOne[User](ctx, c, apiRequest{path: path})
}

func (c *Client) GetNotifications(ctx context.Context, opts ListOptions) (Page[Notification], error) {
	return getPage[Notification](ctx, c, "notifications", opts.query())
}

func (c *Client) GetNotification(ctx context.Context, id string) (Notification, error) {
	path, err := resourcePath("notifications", id)
	if err != nil {
		return Notification{}, err
	}
	return getOne[Notification](ctx, c, apiRequest{path: path})
}

func (c *Client) GetPaymentMethods(ctx context.Context, opts ListOptions) (Page[PaymentMethod], error) {
	return getPage[PaymentMethod](ctx, c, "payment-methods", opts.query())
}

func (c *Client) GetPaymentMethod(ctx context.Context, id string) (PaymentMethod, error) {
	path, err := resourcePath("payment-methods", id)
	if err != nil {
		return PaymentMethod{}, err
	}
	return getOne[PaymentMethod](ctx, c, apiRequest{path: path})
}

func (c *Client) GetOrders(ctx context.Context, opts ListOptions) (Page[Order], error) {
	return getPage[Order](ctx, c, "orders", opts.query())
}

func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	path, err := resourcePath("orders", id)
	if err != nil {
		return Order{}, err
	}
	return getOne[Order](ctx, c, apiRequest{path: path})
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	return postOne[Order](ctx, c, "orders", req)
}

func (c *Client) GetCheckouts(ctx context.Context, opts ListOptions) (Page[Checkout], error) {
	return getPage[Checkout](ctx, c, "checkouts", opts.query())
}

func (c *Client) GetCheckout(ctx context.Context, id string) (Checkout, error) {
	path, err := resourcePath("checkouts", id)
	if err != nil {
		return Checkout{}, err
	}
	return getOne[Checkout](ctx, c, apiRequest{path: path})
}

func (c *Client) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (Checkout, error) {
	return postOne[Checkout](ctx, c, "checkouts", req)
}

func (c *Client) GetMerchant(ctx context.Context, id string) (Merchant, error) {
	path, err := resourcePath("merchants", id)
	if err != nil {
		return Merchant{}, err
	}
	return getOne[Merchant](ctx, c, apiRequest{path: path})
}
