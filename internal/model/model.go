// Package model содержит доменные сущности сервиса пиццерии.
package model

// User представляет покупателя. Ключом документа служит email.
type User struct {
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	Email          string         `json:"email"`
	Address        string         `json:"address"`
	HashedPassword string         `json:"hashedPassword"`
	Cart           map[string]int `json:"cart"`
	Orders         []string       `json:"orders"`
}

// MenuItem описывает позицию меню из фиксированного каталога.
type MenuItem struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// Order описывает заказ пользователя. Positions — замороженная копия корзины
// на момент оформления, Total посчитан по ценам меню на тот же момент и
// позднее не пересчитывается.
type Order struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Positions map[string]int `json:"positions"`
	Total     float64        `json:"total"`
	Processed bool           `json:"processed"`
}

// Token описывает токен доступа пользователя. Expires — unix-время в
// миллисекундах.
type Token struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Expires int64  `json:"expires"`
}
