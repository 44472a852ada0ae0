package model

// ConnectionParams 是侧边栏中的五个连接字段，均为原样字符串，不做校验。
type ConnectionParams struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Redacted 返回去掉密码后的副本，用于日志与接口响应。
func (p ConnectionParams) Redacted() ConnectionParams {
	p.Password = ""
	return p
}
