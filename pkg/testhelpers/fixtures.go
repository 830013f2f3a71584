package testhelpers

// OrdersFixture is a small source schema covering every object category.
// Trigger names repeat across tables on purpose.
const OrdersFixture = `
CREATE SCHEMA IF NOT EXISTS sales;

CREATE TABLE customers (
    id         serial PRIMARY KEY,
    name       varchar(100) NOT NULL,
    email      text,
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE orders (
    id          serial PRIMARY KEY,
    customer_id integer NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
    total       numeric(10,2) NOT NULL,
    status      char(1) NOT NULL DEFAULT 'N',
    tags        text[],
    updated_at  timestamp
);

CREATE INDEX idx_orders_customer_status ON orders (customer_id, status);

CREATE TABLE sales.regions (
    code varchar(8) PRIMARY KEY,
    name text NOT NULL
);

CREATE VIEW open_orders AS
    SELECT o.id, o.total, c.name AS customer_name
    FROM orders o JOIN customers c ON c.id = o.customer_id
    WHERE o.status = 'N';

CREATE FUNCTION order_total(p_order integer) RETURNS numeric AS $$
    SELECT total FROM orders WHERE id = p_order;
$$ LANGUAGE sql;

CREATE PROCEDURE close_order(IN p_order integer, INOUT p_status char) AS $$
BEGIN
    UPDATE orders SET status = 'C' WHERE id = p_order;
    p_status := 'C';
END;
$$ LANGUAGE plpgsql;

CREATE FUNCTION touch_updated_at() RETURNS trigger AS $$
BEGIN
    NEW.updated_at := now();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER touch BEFORE INSERT OR UPDATE ON orders
    FOR EACH ROW EXECUTE FUNCTION touch_updated_at();

CREATE TRIGGER touch BEFORE UPDATE ON customers
    FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`
