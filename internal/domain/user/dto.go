package user

// BaseRequest — логин и пароль для регистрации и входа.
type BaseRequest struct {
	Login    string `json:"login" minLength:"3" maxLength:"32"`
	Password string `json:"password" minLength:"8"`
}
